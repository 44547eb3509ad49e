package model

// Claim records a friendly locking a hostile as its exclusive target.
type Claim struct {
	FriendlyID AgentID
	HostileID  AgentID
	Distance   float64
}

// Engagement records a hostile neutralized by a friendly that was lost in
// the same collision.
type Engagement struct {
	HostileID  AgentID
	FriendlyID AgentID
	Distance   float64
}
