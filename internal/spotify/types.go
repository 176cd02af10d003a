package spotify

type rawTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	DurationMS int64       `json:"duration_ms"`
	Album      rawAlbum    `json:"album"`
	Artists    []rawArtist `json:"artists"`
}

type rawAlbum struct {
	Name   string     `json:"name"`
	Images []rawImage `json:"images"`
}

type rawImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type rawArtist struct {
	Name string `json:"name"`
}

type rawToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}
