package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"partnerbot/internal/domain"
)

// Entity types the classifier is trained to extract.
const (
	entityCustomer     = "customer"
	entitySubscription = "subscription"
)

// ListCustomersIntent enumerates the partner's customer accounts.
type ListCustomersIntent struct {
	partner domain.PartnerAPI
	logger  *slog.Logger
}

// NewListCustomersIntent creates the handler.
func NewListCustomersIntent(partner domain.PartnerAPI, logger *slog.Logger) *ListCustomersIntent {
	return &ListCustomersIntent{partner: partner, logger: logger}
}

func (i *ListCustomersIntent) Name() string                          { return "listCustomers" }
func (i *ListCustomersIntent) RequiredPermission() domain.Permission { return domain.PermissionPartner }
func (i *ListCustomersIntent) HelpText() string {
	return "`list customers` — show the customers you manage"
}

func (i *ListCustomersIntent) Execute(ctx context.Context, turn *domain.Turn) (domain.OutboundMessage, error) {
	customers, err := i.partner.ListCustomers(ctx)
	if err != nil {
		return domain.OutboundMessage{}, domain.WrapOp("ListCustomers.Execute", err)
	}
	if len(customers) == 0 {
		return domain.OutboundMessage{Content: "You have no customers yet."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You manage %d customer(s):", len(customers))
	for _, c := range customers {
		fmt.Fprintf(&b, "\n- %s (%s)", c.CompanyName, c.ID)
	}
	b.WriteString("\n\nSay `select customer <name>` to work with one of them.")
	return domain.OutboundMessage{Content: b.String()}, nil
}

// SelectCustomerIntent sets the conversation's customer context. Selecting a
// customer always clears any previously selected subscription.
type SelectCustomerIntent struct {
	partner    domain.PartnerAPI
	principals *PrincipalManager
	logger     *slog.Logger
}

// NewSelectCustomerIntent creates the handler.
func NewSelectCustomerIntent(partner domain.PartnerAPI, principals *PrincipalManager, logger *slog.Logger) *SelectCustomerIntent {
	return &SelectCustomerIntent{partner: partner, principals: principals, logger: logger}
}

func (i *SelectCustomerIntent) Name() string                          { return "selectCustomer" }
func (i *SelectCustomerIntent) RequiredPermission() domain.Permission { return domain.PermissionPartner }
func (i *SelectCustomerIntent) HelpText() string {
	return "`select customer <name>` — choose the customer to operate on"
}

func (i *SelectCustomerIntent) Execute(ctx context.Context, turn *domain.Turn) (domain.OutboundMessage, error) {
	query := turn.NLU.FirstEntity(entityCustomer)
	if query == "" {
		return domain.OutboundMessage{Content: "Which customer? Say `select customer <name or id>`."}, nil
	}

	customer, err := i.resolve(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OutboundMessage{Content: fmt.Sprintf("I couldn't find a customer matching %q. Try `list customers` first.", query)}, nil
		}
		return domain.OutboundMessage{}, domain.WrapOp("SelectCustomer.Execute", err)
	}

	updated := turn.Principal.WithCustomer(customer.ID)
	if err := i.principals.Save(ctx, turn.ConversationID, updated); err != nil {
		return domain.OutboundMessage{}, err
	}
	i.logger.Debug("customer selected", "conversation", turn.ConversationID, "customer", customer.ID)
	return domain.OutboundMessage{
		Content: fmt.Sprintf("Working with **%s** now. Any previous subscription selection was cleared.", customer.CompanyName),
	}, nil
}

// resolve finds a customer by id, then by case-insensitive company-name
// match across the partner's customer list.
func (i *SelectCustomerIntent) resolve(ctx context.Context, query string) (domain.Customer, error) {
	if c, err := i.partner.GetCustomer(ctx, query); err == nil {
		return c, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Customer{}, err
	}

	customers, err := i.partner.ListCustomers(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	needle := strings.ToLower(query)
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.CompanyName), needle) {
			return c, nil
		}
	}
	return domain.Customer{}, domain.ErrNotFound
}
