package identity

// Role は操作主体の権限区分を表します。
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Valid はロールが既知の値かどうかを返します。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	default:
		return false
	}
}

// Privileged は自分以外の勤怠・ロタを操作できるロールかどうかを返します。
func (r Role) Privileged() bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	case RoleEmployee:
		return false
	default:
		return false
	}
}

// Principal は外部の認証基盤から渡される操作主体です。
type Principal struct {
	WorkerID   string
	Role       Role
	Location   string
	Department string
}
