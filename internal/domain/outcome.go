/**
 * @description
 * The uniform result envelope every engine path terminates in, success or
 * failure alike. The transport layer serialises it verbatim and mirrors the
 * status code onto the HTTP response.
 */
package domain

// Originating systems recorded in an outcome's api_src field.
const (
	SourceBilling = "chargebee"
	SourceMailbox = "mailserver"
)

// Outcome is the engine's sole output type.
type Outcome struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"msg,omitempty"`
	Data       any    `json:"data,omitempty"`
	Object     any    `json:"object,omitempty"`
	APISrc     string `json:"api_src,omitempty"`
}

// OK reports whether the outcome is a success (2xx).
func (o *Outcome) OK() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}

// StatusReason translates an outcome status code into its reason phrase. The
// closed set of codes the engine emits is {200,201,400,403,422,500,501,502}.
func StatusReason(code int) string {
	switch code {
	case 200, 201:
		return "Ok"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 422:
		return "Unprocessable Content"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Bad Gateway"
	default:
		return "Unknown"
	}
}
