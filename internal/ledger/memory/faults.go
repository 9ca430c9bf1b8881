package memory

// Op names a transactional write that can be made to fail.
type Op string

const (
	OpInsertSale            Op = "insert_sale"
	OpInsertSaleLines       Op = "insert_sale_lines"
	OpUpdateCustomerBalance Op = "update_customer_balance"
	OpUpdateSaleStatus      Op = "update_sale_status"
	OpInsertPayment         Op = "insert_payment"
)

// FailOn makes every later call of op return err until ClearFaults.
func (s *Store) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// ClearFaults removes all injected failures.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[Op]error)
}
