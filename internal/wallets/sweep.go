package wallets

import "context"

// InvoiceSweep runs SweepPendingInvoices as a scheduled job.
type InvoiceSweep struct {
	manager *Manager
}

func NewInvoiceSweep(manager *Manager) *InvoiceSweep {
	return &InvoiceSweep{manager: manager}
}

func (s *InvoiceSweep) Name() string {
	return "invoice-sweep"
}

func (s *InvoiceSweep) Run(ctx context.Context) error {
	return s.manager.SweepPendingInvoices(ctx)
}
