package models

// Portfolio is a custody portfolio holding the treasury wallets.
type Portfolio struct {
	Id   string
	Name string
}

// Wallet is a custody wallet inside a portfolio.
type Wallet struct {
	Id     string
	Name   string
	Symbol string
	Type   string
}

// Withdrawal is the result of a disbursement submitted to custody.
type Withdrawal struct {
	ActivityId     string
	Asset          string
	Amount         string
	Destination    string
	IdempotencyKey string
}
