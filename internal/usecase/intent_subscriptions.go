package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"partnerbot/internal/domain"
)

const replySelectCustomerFirst = "Please select a customer first: `select customer <name>`."

// ListSubscriptionsIntent enumerates the selected customer's subscriptions.
type ListSubscriptionsIntent struct {
	partner domain.PartnerAPI
	logger  *slog.Logger
}

// NewListSubscriptionsIntent creates the handler.
func NewListSubscriptionsIntent(partner domain.PartnerAPI, logger *slog.Logger) *ListSubscriptionsIntent {
	return &ListSubscriptionsIntent{partner: partner, logger: logger}
}

func (i *ListSubscriptionsIntent) Name() string { return "listSubscriptions" }
func (i *ListSubscriptionsIntent) RequiredPermission() domain.Permission {
	return domain.PermissionPartner
}
func (i *ListSubscriptionsIntent) HelpText() string {
	return "`list subscriptions` — show the selected customer's subscriptions"
}

func (i *ListSubscriptionsIntent) Execute(ctx context.Context, turn *domain.Turn) (domain.OutboundMessage, error) {
	// Subscription-scoped operations fail fast without a customer; the
	// user gets a pointer, not an error.
	if !turn.Principal.Ctx.HasCustomer() {
		return domain.OutboundMessage{Content: replySelectCustomerFirst}, nil
	}

	subs, err := i.partner.ListSubscriptions(ctx, turn.Principal.Ctx.CustomerID)
	if err != nil {
		return domain.OutboundMessage{}, domain.WrapOp("ListSubscriptions.Execute", err)
	}
	if len(subs) == 0 {
		return domain.OutboundMessage{Content: "This customer has no subscriptions."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d subscription(s):", len(subs))
	for _, s := range subs {
		fmt.Fprintf(&b, "\n- %s (%s, %s)", s.FriendlyName, s.ID, s.Status)
	}
	return domain.OutboundMessage{Content: b.String()}, nil
}

// SelectSubscriptionIntent sets the conversation's subscription context
// within the selected customer.
type SelectSubscriptionIntent struct {
	partner    domain.PartnerAPI
	principals *PrincipalManager
	logger     *slog.Logger
}

// NewSelectSubscriptionIntent creates the handler.
func NewSelectSubscriptionIntent(partner domain.PartnerAPI, principals *PrincipalManager, logger *slog.Logger) *SelectSubscriptionIntent {
	return &SelectSubscriptionIntent{partner: partner, principals: principals, logger: logger}
}

func (i *SelectSubscriptionIntent) Name() string { return "selectSubscription" }
func (i *SelectSubscriptionIntent) RequiredPermission() domain.Permission {
	return domain.PermissionPartner | domain.PermissionAdminAgents
}
func (i *SelectSubscriptionIntent) HelpText() string {
	return "`select subscription <name>` — choose a subscription of the selected customer"
}

func (i *SelectSubscriptionIntent) Execute(ctx context.Context, turn *domain.Turn) (domain.OutboundMessage, error) {
	if !turn.Principal.Ctx.HasCustomer() {
		return domain.OutboundMessage{Content: replySelectCustomerFirst}, nil
	}

	query := turn.NLU.FirstEntity(entitySubscription)
	if query == "" {
		return domain.OutboundMessage{Content: "Which subscription? Say `select subscription <name or id>`."}, nil
	}

	customerID := turn.Principal.Ctx.CustomerID
	sub, err := i.resolve(ctx, customerID, query)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OutboundMessage{Content: fmt.Sprintf("No subscription matching %q for this customer. Try `list subscriptions`.", query)}, nil
		}
		return domain.OutboundMessage{}, domain.WrapOp("SelectSubscription.Execute", err)
	}

	updated, err := turn.Principal.WithSubscription(sub.ID)
	if err != nil {
		return domain.OutboundMessage{Content: replySelectCustomerFirst}, nil
	}
	if err := i.principals.Save(ctx, turn.ConversationID, updated); err != nil {
		return domain.OutboundMessage{}, err
	}
	i.logger.Debug("subscription selected",
		"conversation", turn.ConversationID, "customer", customerID, "subscription", sub.ID)
	return domain.OutboundMessage{
		Content: fmt.Sprintf("Subscription **%s** selected.", sub.FriendlyName),
	}, nil
}

func (i *SelectSubscriptionIntent) resolve(ctx context.Context, customerID, query string) (domain.Subscription, error) {
	if s, err := i.partner.GetSubscription(ctx, customerID, query); err == nil {
		return s, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Subscription{}, err
	}

	subs, err := i.partner.ListSubscriptions(ctx, customerID)
	if err != nil {
		return domain.Subscription{}, err
	}
	needle := strings.ToLower(query)
	for _, s := range subs {
		if strings.Contains(strings.ToLower(s.FriendlyName), needle) {
			return s, nil
		}
	}
	return domain.Subscription{}, domain.ErrNotFound
}
