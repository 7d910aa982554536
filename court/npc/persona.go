package npc

const DefaultLeadHigh = 0.7

// PersonalityProfile defines the tunable parameters for a RuleBrain.
type PersonalityProfile struct {
	LeadHigh  float64 `json:"leadHigh"`  // 0.0–1.0: chance to lead the highest card of the chosen suit
	PowerLead bool    `json:"powerLead"` // always lead high when the chosen suit holds K or A
}

func DefaultProfile() PersonalityProfile {
	return PersonalityProfile{LeadHigh: DefaultLeadHigh}
}

// NPCPersona defines a named bot character.
type NPCPersona struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Tagline string             `json:"tagline"`
	Brain   PersonalityProfile `json:"brain"`
}
