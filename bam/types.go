package bam

type sessionResponse struct {
	APIToken                       string `json:"apiToken"`
	BasicAuthenticationCredentials string `json:"basicAuthenticationCredentials"`
}

type listResponse struct {
	Count int        `json:"count"`
	Data  []resource `json:"data"`
}

type resource struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}
