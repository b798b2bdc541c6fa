package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCashier  Role = "cashier"
	RoleManager  Role = "manager"
)

// Identity is the caller of a request, resolved by the transport layer and
// passed explicitly to the operations that need it.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (i Identity) IsStaff() bool {
	return i.Role == RoleCashier || i.Role == RoleManager
}
