// Package types provides common type definitions for the interest
// reconstruction service.
package types

// Token represents a supported reserve token
type Token string

const (
	// TokenWXDAI represents the wrapped xDai reserve
	TokenWXDAI Token = "wxdai"
	// TokenUSDC represents the USDC reserve
	TokenUSDC Token = "usdc"
)

// Side represents the side of a lending position
type Side string

const (
	// SideSupply represents a deposit position (aToken balance)
	SideSupply Side = "supply"
	// SideDebt represents a borrow position (variable debt token balance)
	SideDebt Side = "debt"
)

// Version represents a protocol version
type Version string

const (
	// VersionV2 represents the v2 money market deployment
	VersionV2 Version = "v2"
	// VersionV3 represents the v3 money market deployment
	VersionV3 Version = "v3"
)

// AllTokens lists every supported reserve token.
func AllTokens() []Token {
	return []Token{TokenWXDAI, TokenUSDC}
}

// AllSides lists both position sides.
func AllSides() []Side {
	return []Side{SideSupply, SideDebt}
}

// AllVersions lists both protocol versions.
func AllVersions() []Version {
	return []Version{VersionV2, VersionV3}
}

// ValidToken reports whether t is a supported token.
func ValidToken(t Token) bool {
	return t == TokenWXDAI || t == TokenUSDC
}

// ValidSide reports whether s is a known position side.
func ValidSide(s Side) bool {
	return s == SideSupply || s == SideDebt
}

// ValidVersion reports whether v is a known protocol version.
func ValidVersion(v Version) bool {
	return v == VersionV2 || v == VersionV3
}

// PositionKey identifies one position: one reserve token, one side, one
// protocol version. It replaces stringly-typed lookups such as
// balances["debt"+token].
type PositionKey struct {
	Token   Token   `json:"token"`
	Side    Side    `json:"side"`
	Version Version `json:"version"`
}

// Valid reports whether every component of the key is a known value.
func (k PositionKey) Valid() bool {
	return ValidToken(k.Token) && ValidSide(k.Side) && ValidVersion(k.Version)
}

// String returns the canonical "token:side:version" form used in cache keys
// and log fields.
func (k PositionKey) String() string {
	return string(k.Token) + ":" + string(k.Side) + ":" + string(k.Version)
}

// PointSource marks whether a daily point was observed on-chain or
// synthesized by gap interpolation.
type PointSource string

const (
	// SourceReal marks a point backed by an indexed snapshot or a fresh
	// on-chain balance read
	SourceReal PointSource = "real"
	// SourceInterpolated marks a synthetic gap-fill point
	SourceInterpolated PointSource = "interpolated"
)

// MovementType classifies a principal movement detected between two
// consecutive daily points.
type MovementType string

const (
	// MovementNone means the scaled balance did not change
	MovementNone MovementType = ""
	// MovementSupply is a deposit on the supply side
	MovementSupply MovementType = "supply"
	// MovementWithdraw is a withdrawal on the supply side
	MovementWithdraw MovementType = "withdraw"
	// MovementBorrow is a new borrow on the debt side
	MovementBorrow MovementType = "borrow"
	// MovementRepay is a repayment on the debt side
	MovementRepay MovementType = "repay"
)

// SnapshotDTO is the wire form of one indexed scaled-balance observation.
// All amounts are decimal strings: JSON cannot carry arbitrary-precision
// integers, so they are parsed into big integers immediately on entry to
// the core.
type SnapshotDTO struct {
	Timestamp     int64  `json:"timestamp"`
	RawBalance    string `json:"rawBalance"`
	ScaledBalance string `json:"scaledBalance"`
	Index         string `json:"index"`
}

// DailyPointDTO is the wire form of one reconstructed daily point.
type DailyPointDTO struct {
	Date           int          `json:"date"` // yyyymmdd, UTC
	Timestamp      int64        `json:"timestamp"`
	Balance        string       `json:"balance"`
	PeriodInterest string       `json:"periodInterest"`
	TotalInterest  string       `json:"totalInterest"`
	MovementAmount string       `json:"movementAmount,omitempty"`
	MovementType   MovementType `json:"movementType,omitempty"`
	Source         PointSource  `json:"source"`
}

// SeriesDTO is the wire form of a full reconstructed series for one
// position.
type SeriesDTO struct {
	Address string          `json:"address"`
	Key     PositionKey     `json:"position"`
	Points  []DailyPointDTO `json:"points"`
}

// PositionSummaryDTO reports the headline numbers for one position.
type PositionSummaryDTO struct {
	Key           PositionKey `json:"position"`
	Balance       string      `json:"balance"`
	TotalInterest string      `json:"totalInterest"`
	PointCount    int         `json:"pointCount"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
