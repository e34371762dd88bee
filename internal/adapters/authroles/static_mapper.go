package authroles

import (
	"strings"

	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	"github.com/target/mmk-autoapply/internal/ports"
)

// StaticRoleMapper maps provider groups to roles by case-insensitive
// membership. Admin groups win over user groups; anything else is a guest.
type StaticRoleMapper struct {
	AdminGroups []string
	UserGroups  []string
}

var _ ports.RoleMapper = StaticRoleMapper{}

// NewStaticRoleMapper builds a mapper from comma separated group lists as
// they appear in configuration.
func NewStaticRoleMapper(adminGroups, userGroups string) StaticRoleMapper {
	return StaticRoleMapper{
		AdminGroups: splitGroups(adminGroups),
		UserGroups:  splitGroups(userGroups),
	}
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if anyMember(groups, m.AdminGroups) {
		return domainauth.RoleAdmin
	}
	if anyMember(groups, m.UserGroups) {
		return domainauth.RoleUser
	}
	return domainauth.RoleGuest
}

func anyMember(groups, allowed []string) bool {
	for _, g := range groups {
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSpace(g), a) {
				return true
			}
		}
	}
	return false
}

func splitGroups(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
