package service

import (
	"context"
	"fmt"

	"ftledger/internal/token/models"
	dErrors "ftledger/pkg/domain-errors"
)

// Query answers a read-only request. It never mutates state and only fails
// for a nil or unknown query.
func (d *Dispatcher) Query(ctx context.Context, q models.Query) (models.QueryReply, error) {
	_, span := d.tracer.Start(ctx, "ledger.query")
	defer span.End()

	now := d.now(ctx)
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := d.state
	switch q := q.(type) {
	case models.NameQuery:
		return models.NameReply{Name: st.Metadata.Name}, nil
	case models.SymbolQuery:
		return models.SymbolReply{Symbol: st.Metadata.Symbol}, nil
	case models.DecimalsQuery:
		return models.DecimalsReply{Decimals: st.Metadata.Decimals}, nil
	case models.CurrentSupplyQuery:
		return models.CurrentSupplyReply{Amount: st.Ledger.TotalSupply()}, nil
	case models.TotalSupplyQuery:
		return models.TotalSupplyReply{Amount: st.Ledger.MaxSupply()}, nil
	case models.DescriptionQuery:
		return models.DescriptionReply{Description: st.Metadata.Description}, nil
	case models.ExternalLinksQuery:
		return models.ExternalLinksReply{Links: st.Metadata.ExternalLinks}, nil
	case models.ConfigQuery:
		return models.ConfigReply{Config: st.Config}, nil
	case models.AdminsQuery:
		return models.AdminsReply{Admins: st.Admins.List()}, nil
	case models.BalanceOfQuery:
		return models.BalanceOfReply{Amount: st.Ledger.BalanceOf(q.Account)}, nil
	case models.AllowanceOfAccountQuery:
		return models.AllowanceReply{Amount: st.Allowances.Allowance(q.Account, q.ApprovedAccount)}, nil
	case models.TxValidityTimeQuery:
		until, ok := st.Journal.ValidityOf(q.Account, q.TxID, now)
		if !ok {
			return models.TxValidityTimeReply{}, nil
		}
		return models.TxValidityTimeReply{ValidUntil: &until}, nil
	case models.TxIDsForAccountQuery:
		return models.TxIDsForAccountReply{TxIDs: st.Journal.IDsFor(q.Account, now)}, nil
	case nil:
		return nil, dErrors.New(dErrors.CodeBadRequest, "query is required")
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported query %T", q))
	}
}
