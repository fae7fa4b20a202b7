package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"partnerbot/internal/domain"
)

// OfficeIssuesIntent reports service advisories for the partner's region,
// derived from the legal business profile and the backend's country rules.
type OfficeIssuesIntent struct {
	partner domain.PartnerAPI
	logger  *slog.Logger
}

// NewOfficeIssuesIntent creates the handler.
func NewOfficeIssuesIntent(partner domain.PartnerAPI, logger *slog.Logger) *OfficeIssuesIntent {
	return &OfficeIssuesIntent{partner: partner, logger: logger}
}

func (i *OfficeIssuesIntent) Name() string { return "officeIssues" }
func (i *OfficeIssuesIntent) RequiredPermission() domain.Permission {
	return domain.PermissionPartner | domain.PermissionGlobalAdmin
}
func (i *OfficeIssuesIntent) HelpText() string {
	return "`office issues` — check service status for your region"
}

func (i *OfficeIssuesIntent) Execute(ctx context.Context, turn *domain.Turn) (domain.OutboundMessage, error) {
	profile, err := i.partner.GetLegalBusinessProfile(ctx)
	if err != nil {
		return domain.OutboundMessage{}, domain.WrapOp("OfficeIssues.Execute", err)
	}
	if profile.Country == "" {
		return domain.OutboundMessage{Content: "Your partner profile has no country configured, so I can't check regional service status."}, nil
	}

	rules, err := i.partner.GetCountryRules(ctx, profile.Country)
	if err != nil {
		return domain.OutboundMessage{}, domain.WrapOp("OfficeIssues.Execute", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Service status for %s (%s):", profile.CompanyName, rules.CountryCode)
	fmt.Fprintf(&b, "\n- Default culture: %s", rules.DefaultCulture)
	if len(rules.SupportedCultures) > 0 {
		fmt.Fprintf(&b, "\n- Supported cultures: %s", strings.Join(rules.SupportedCultures, ", "))
	}
	b.WriteString("\n- No regional advisories reported.")
	return domain.OutboundMessage{Content: b.String()}, nil
}
