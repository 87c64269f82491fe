package policy

// DefaultRules is the rule table of the employee management service.
//
// Anything not listed requires an authenticated principal with any role.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/api/auth/**", Public: true},
		{Pattern: "/api/auth/me"},
		{Pattern: "/login", Public: true},
		{Pattern: "/register", Public: true},
		{Pattern: "/css/**", Public: true},
		{Pattern: "/js/**", Public: true},
		{Pattern: "/actuator/**", Public: true},

		{Pattern: "/employees/**", Roles: []string{"USER", "ADMIN"}},

		{Pattern: "/api/employees/**", Method: MethodGet, Roles: []string{"USER", "ADMIN"}},
		{Pattern: "/api/employees", Method: MethodPost, Roles: []string{"ADMIN"}},
		{Pattern: "/api/employees/**", Method: MethodPut, Roles: []string{"ADMIN"}},
		{Pattern: "/api/employees/**", Method: MethodDelete, Roles: []string{"ADMIN"}},

		{Pattern: "/api/departments/**", Roles: []string{"ADMIN"}},

		{Pattern: "/api/admin/**", Roles: []string{"ADMIN"}},
	}
}

// DefaultTable compiles DefaultRules. It panics only if the built-in table
// is invalid.
func DefaultTable() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		panic(err)
	}
	return t
}
