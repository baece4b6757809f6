package authz

// Built-in role table for the product. Loaded through NewRegistry at
// startup; immutable afterwards.

const (
	RolePracticeOwner      = "practice_owner"
	RoleSpaManager         = "spa_manager"
	RoleMedicalProvider    = "medical_provider"
	RoleBillingCoordinator = "billing_coordinator"
	RoleFrontDeskStaff     = "front_desk_staff"
)

// ManagerLevel is the hierarchy threshold at or above which roles bypass
// per-record ownership checks.
const ManagerLevel = 80

func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RolePracticeOwner,
			Level:       100,
			Permissions: []string{"*"},
			Inherits:    []string{RoleSpaManager},
			DisplayName: "Practice Owner",
			LandingPage: "/dashboard",
		},
		{
			Name:  RoleSpaManager,
			Level: 90,
			Permissions: []string{
				"staff:manage",
				"schedule:manage",
				"financial:view",
				"financial:process",
				"reports:view",
				"reports:export",
			},
			Inherits:    []string{RoleMedicalProvider, RoleBillingCoordinator, RoleFrontDeskStaff},
			DisplayName: "Spa Manager",
			LandingPage: "/dashboard",
		},
		{
			Name:  RoleMedicalProvider,
			Level: 60,
			Permissions: []string{
				"appointment:view",
				"appointment:manage",
				"patient:view",
				"patient:update",
				"treatment:record",
				"treatment:view",
			},
			DisplayName: "Medical Provider",
			LandingPage: "/schedule",
		},
		{
			Name:  RoleBillingCoordinator,
			Level: 50,
			Permissions: []string{
				"financial:view",
				"financial:process",
				"invoice:create",
				"invoice:view",
			},
			DisplayName: "Billing Coordinator",
			LandingPage: "/billing",
		},
		{
			Name:  RoleFrontDeskStaff,
			Level: 40,
			Permissions: []string{
				"appointment:view",
				"appointment:create",
				"patient:view",
				"checkin:manage",
			},
			DisplayName:    "Front Desk",
			LandingPage:    "/schedule",
			TimeRestricted: true,
		},
	}
}
