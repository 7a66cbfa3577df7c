package session

import "github.com/educlass/portal/internal/models"

type Page string

const (
	PageHome             Page = "home"
	PageRegister         Page = "register"
	PageSuccess          Page = "success"
	PageStudentLogin     Page = "studentLogin"
	PageStudentDashboard Page = "studentDashboard"
	PageAdminLogin       Page = "adminLogin"
	PageAdminDashboard   Page = "adminDashboard"
)

type Event string

const (
	ChooseRegister        Event = "chooseRegister"
	ChooseStudentLogin    Event = "chooseStudentLogin"
	ChooseAdminLogin      Event = "chooseAdminLogin"
	BackHome              Event = "backHome"
	RegistrationSucceeded Event = "registrationSucceeded"
	RegistrationFailed    Event = "registrationFailed"
	LoginSucceeded        Event = "loginSucceeded"
	LoginFailed           Event = "loginFailed"
	SignOut               Event = "signOut"
)

type transition struct {
	to            Page
	role          models.Role
	setRole       bool
	clearIdentity bool
}

func to(p Page) transition { return transition{to: p} }

func toWithRole(p Page, r models.Role) transition {
	return transition{to: p, role: r, setRole: true}
}

// transitions is the complete page graph. Anything missing is rejected.
var transitions = map[Page]map[Event]transition{
	PageHome: {
		ChooseRegister:     toWithRole(PageRegister, models.RoleStudent),
		ChooseStudentLogin: toWithRole(PageStudentLogin, models.RoleStudent),
		ChooseAdminLogin:   toWithRole(PageAdminLogin, models.RoleAdmin),
	},
	PageRegister: {
		BackHome:              to(PageHome),
		RegistrationSucceeded: to(PageSuccess),
		RegistrationFailed:    to(PageRegister),
	},
	PageStudentLogin: {
		ChooseRegister: to(PageRegister),
		BackHome:       to(PageHome),
		LoginSucceeded: to(PageStudentDashboard),
		LoginFailed:    to(PageStudentLogin),
	},
	PageAdminLogin: {
		BackHome:       to(PageHome),
		LoginSucceeded: to(PageAdminDashboard),
		LoginFailed:    to(PageAdminLogin),
	},
	PageStudentDashboard: {
		SignOut: {to: PageHome, clearIdentity: true},
	},
	PageAdminDashboard: {
		SignOut: {to: PageHome, clearIdentity: true},
	},
	PageSuccess: {
		BackHome: {to: PageHome, clearIdentity: true},
	},
}

// Allowed reports whether ev is defined on from.
func Allowed(from Page, ev Event) bool {
	_, ok := transitions[from][ev]
	return ok
}
