package model

// EntityStatus is the registration status of a taxpayer.
type EntityStatus string

const (
	StatusActive    EntityStatus = "Active"
	StatusSuspended EntityStatus = "Suspended"
	StatusCancelled EntityStatus = "Cancelled"
)

// IdentifierLength is the fixed length of a taxpayer identifier.
const IdentifierLength = 15

// DefaultTrustScore is assigned to entities that only appear as invoice endpoints.
const DefaultTrustScore = 0.5

// Entity is a registered taxpayer. Its ID is the graph node key.
type Entity struct {
	ID           string       `json:"gstin" validate:"len=15"`
	Name         string       `json:"legal_name"`
	Status       EntityStatus `json:"status"`
	TrustScore   float64      `json:"trust_score"`
	Jurisdiction string       `json:"state_code"`
}

// DefaultEntity returns the placeholder used for identifiers referenced by an
// invoice but missing from the registry.
func DefaultEntity(id string) Entity {
	return Entity{
		ID:         id,
		Name:       "Unknown",
		Status:     StatusActive,
		TrustScore: DefaultTrustScore,
	}
}

// FraudLabel is optional ground truth for a single entity.
type FraudLabel struct {
	EntityID  string `json:"gstin" validate:"len=15"`
	IsFraud   bool   `json:"is_fraud"`
	FraudType string `json:"fraud_type"`
}
