package postgres

import (
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
)

var (
	_ account.Writer  = (*Store)(nil)
	_ transfer.Repo   = (*Store)(nil)
	_ transfer.Writer = (*Store)(nil)
	_ query.Repo      = (*Store)(nil)
)
