package clinic

// PasswordChange changes the signed-in user's password.
type PasswordChange struct {
	CurrentPassword         string `json:"current_password" validate:"required"`
	NewPassword             string `json:"new_password" validate:"required,min=6,nefield=CurrentPassword"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

// PasswordReset sets another account's password. Administrators only.
type PasswordReset struct {
	Email                   string `json:"email" validate:"required,email"`
	NewPassword             string `json:"new_password" validate:"required,min=6"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

// BatchPasswordReset sets the same password on several accounts.
type BatchPasswordReset struct {
	Emails                  []string `json:"emails" validate:"required,min=1,dive,email"`
	NewPassword             string   `json:"new_password" validate:"required,min=6"`
	NewPasswordConfirmation string   `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

// BatchResetResult reports the outcome of a BatchPasswordReset.
type BatchResetResult struct {
	Message      string   `json:"message" yaml:"message"`
	SuccessCount int      `json:"success_count" yaml:"success_count"`
	FailedCount  int      `json:"failed_count" yaml:"failed_count"`
	FailedEmails []string `json:"failed_emails,omitempty" yaml:"failed_emails,omitempty"`
}
