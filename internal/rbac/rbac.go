package rbac

type Role string
type Action string

const (
	RoleUser   Role = "user"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead            Action = "read"
	ActionUpload          Action = "upload"
	ActionBook            Action = "book"
	ActionChat            Action = "chat"
	ActionManageProfile   Action = "manage_profile"
	ActionManageBookings  Action = "manage_bookings"
	ActionManageDirectory Action = "manage_directory"
	ActionManageFAQ       Action = "manage_faq"
	ActionAdmin           Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleLawyer:
		switch action {
		case ActionRead, ActionUpload, ActionChat, ActionManageProfile, ActionManageBookings:
			return true
		}
		return false
	case RoleUser:
		switch action {
		case ActionRead, ActionUpload, ActionBook, ActionChat:
			return true
		}
		return false
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleLawyer, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
