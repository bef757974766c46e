package model

// ValidationError 可以直接返回给调用方的请求错误（HTTP 400）
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrNoFile         = &ValidationError{Code: "no_file", Message: "No file uploaded"}
	ErrNoFileSelected = &ValidationError{Code: "no_file_selected", Message: "No file selected"}
	ErrFileType       = &ValidationError{Code: "file_type", Message: "File type not allowed"}
	ErrFileTooLarge   = &ValidationError{Code: "file_too_large", Message: "File too large"}
	ErrUndecodable    = &ValidationError{Code: "undecodable", Message: "Could not read image"}
)
