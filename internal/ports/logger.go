package ports

import "github.com/bft-labs/wifiship/pkg/log"

// Logger is the structured logger every component receives.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for use inside internal packages.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Float64  = log.Float64
	Bool     = log.Bool
	Duration = log.Duration
	Time     = log.Time
	Bytes    = log.Bytes
	Err      = log.Err
	Any      = log.Any
)
