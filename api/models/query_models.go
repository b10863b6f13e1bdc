// api/models/query_models.go
package models

// QueryResponse is the uniform envelope returned by POST /query. Exactly one
// of Data and Error is meaningful; both are always present so clients use a
// single decoding path.
type QueryResponse struct {
	Data  any     `json:"data"`
	Error *string `json:"error"`
}
