package services

// User-facing notification texts.
const (
	MsgFixForm            = "Please fix the errors in the form"
	MsgRegistered         = "Registration successful! Check your email for confirmation."
	MsgRegisteredNoEmail  = "Registration successful, but the confirmation email could not be sent."
	MsgEmailInUse         = "Email is already registered. Please login instead."
	MsgWeakPassword       = "Password is too weak. Use at least 6 characters."
	MsgRegistrationFailed = "Registration failed. Please try again."
	MsgRosterUnavailable  = "Registration could not be saved. Please try again."

	MsgStudentLogin   = "Student login successful!"
	MsgAdminLogin     = "Admin login successful!"
	MsgAccountMissing = "No account found with this email or ID"
	MsgWrongPassword  = "Incorrect password"
	MsgBadIdentifier  = "Invalid email format"
	MsgNotAdmin       = "This account does not have admin access"
	MsgLoginFailed    = "Login failed. Please try again."
	MsgLoginToast     = "Login failed. Please check your credentials."

	MsgLoggedOut    = "Logged out successfully"
	MsgLogoutFailed = "Logout failed"
	MsgCSVExported  = "CSV exported successfully!"
)
