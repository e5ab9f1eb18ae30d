package errors

// ErrorWithStatusCode carries an HTTP status alongside the message.
// Handlers default to 500 for plain errors; wrap with this type when a
// different status should reach the client.
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}
