package errors

// 通用错误码
const (
	ErrInternalServer = "ERR_INTERNAL_SERVER"
	ErrInvalidParam   = "ERR_INVALID_PARAM"
	ErrUnauthorized   = "ERR_UNAUTHORIZED"
	ErrForbidden      = "ERR_FORBIDDEN"
)

// 用户相关错误码
const (
	ErrEmptyID            = "ERR_EMPTY_ID"
	ErrUserNotFound       = "ERR_USER_NOT_FOUND"
	ErrEmptyCredentials   = "ERR_EMPTY_CREDENTIALS"
	ErrInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrInvalidUsername    = "ERR_INVALID_USERNAME"
	ErrUsernameTaken      = "ERR_USERNAME_TAKEN"
	ErrTokenInvalidated   = "ERR_TOKEN_INVALIDATED"
)

// 文件相关错误码
const (
	ErrFileNotFound   = "ERR_FILE_NOT_FOUND"
	ErrFilePathTaken  = "ERR_FILE_PATH_TAKEN"
	ErrInvalidPath    = "ERR_INVALID_PATH"
	ErrEmptyFile      = "ERR_EMPTY_FILE"
	ErrFolderNotFound = "ERR_FOLDER_NOT_FOUND"
)
