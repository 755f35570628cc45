package exports

import "resumegen-backend/internal/shared/config"

// Subscription plans.
const (
	PlanFree       = "free"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// Enterprise accounts get a larger bulk batch and the longer expiry window.
const enterpriseBulkResumes = 50

// Limits captures what a subscription plan allows for exports.
// MonthlyExports of -1 means unlimited.
type Limits struct {
	MonthlyExports    int  `json:"monthlyExports"`
	FileSizeMB        int  `json:"fileSizeMb"`
	ExpiryHours       int  `json:"expiryHours"`
	BulkExportEnabled bool `json:"bulkExportEnabled"`
	MaxBulkResumes    int  `json:"maxBulkResumes"`
}

// Unlimited reports whether the plan has no monthly cap.
func (l Limits) Unlimited() bool {
	return l.MonthlyExports < 0
}

// LimitsForPlan maps a plan name onto its export limits. Unknown plans get
// free limits.
func LimitsForPlan(plan string, cfg config.ExportConfig) Limits {
	switch plan {
	case PlanPremium:
		return Limits{
			MonthlyExports:    cfg.PremiumExportsPerMonth,
			FileSizeMB:        cfg.MaxExportSizeMB,
			ExpiryHours:       cfg.ExportExpiryHours,
			BulkExportEnabled: true,
			MaxBulkResumes:    cfg.MaxBulkResumes,
		}
	case PlanEnterprise:
		return Limits{
			MonthlyExports:    -1,
			FileSizeMB:        cfg.MaxExportSizeMB,
			ExpiryHours:       cfg.BulkExpiryHours,
			BulkExportEnabled: true,
			MaxBulkResumes:    enterpriseBulkResumes,
		}
	default:
		return Limits{
			MonthlyExports:    cfg.FreeExportsPerMonth,
			FileSizeMB:        cfg.MaxExportSizeMB,
			ExpiryHours:       cfg.ExportExpiryHours,
			BulkExportEnabled: false,
			MaxBulkResumes:    0,
		}
	}
}
