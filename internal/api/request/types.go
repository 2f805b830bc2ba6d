package request

// ChangeDisplayNameRequest is the request body for renaming an account
type ChangeDisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

// ChangePasswordRequest is the request body for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
