package port

import "context"

// 需要提权能力的角色集合
const (
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// Actor 是认证服务解析出来的操作者身份
type Actor struct {
	ID    string
	Roles []string
}

// HasElevatedRole 判断操作者是否持有管理员级别能力。
// 风控复核和退货质检都要求这一能力。
func (a Actor) HasElevatedRole() bool {
	for _, role := range a.Roles {
		if role == RoleAdmin || role == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// AuthService 是认证/授权系统的出站端口。
// Token 校验的内部实现（JWT、会话表）不属于本核心。
type AuthService interface {
	// ResolveActor 根据请求携带的凭证解析操作者，
	// 凭证非法时返回错误。
	ResolveActor(ctx context.Context, token string) (Actor, error)
}
