package model

const MarketCollection = "markets"

// MarketDocument is the query-index projection of a registered market.
// It is written from committed host events and never read back into the
// ledger.
type MarketDocument struct {
	Address     string `bson:"_id"`
	Sequence    uint64 `bson:"sequence"`
	Creator     string `bson:"creator"`
	Question    string `bson:"question"`
	Avatar      string `bson:"avatar,omitempty"`
	Description string `bson:"description,omitempty"`
	YesToken    string `bson:"yes_token"`
	NoToken     string `bson:"no_token"`
	EndTime     int64  `bson:"end_time"` // Unix timestamp
	Active      bool   `bson:"active"`   // false once ended or resolved
	Resolved    bool   `bson:"resolved"`
	WinningSide string `bson:"winning_side,omitempty"`
	TotalStaked string `bson:"total_staked"` // decimal string, amounts can exceed int64
	CreatedAt   int64  `bson:"created_at"`
}
