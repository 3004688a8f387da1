package stock

import "fmt"

// MovementNumbers hands out movement numbers for one transaction:
// <transaction number>-001, -002, ...
type MovementNumbers struct {
	prefix string
	next   int
}

// NewMovementNumbers starts numbering under txNumber.
func NewMovementNumbers(txNumber string) *MovementNumbers {
	return &MovementNumbers{prefix: txNumber}
}

// Next returns the next movement number.
func (n *MovementNumbers) Next() string {
	n.next++
	return fmt.Sprintf("%s-%03d", n.prefix, n.next)
}

// Issued returns how many numbers were handed out.
func (n *MovementNumbers) Issued() int {
	return n.next
}
