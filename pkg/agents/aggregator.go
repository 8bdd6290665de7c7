package agents

import (
	"math"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/models"
)

// AggregateZones projects reactions onto per-zone sentiment. With
// region-scoped agents (agent key == zone id) this is a direct lookup:
// each zone's sentiment is its regional agent's stance. Pure function,
// no upstream calls.
func AggregateZones(reactions []models.AgentReaction) []models.ZoneSentiment {
	byKey := make(map[string]models.AgentReaction, len(reactions))
	for _, r := range reactions {
		byKey[r.AgentKey] = r
	}

	zones := make([]models.ZoneSentiment, 0, len(config.Zones))
	for _, zone := range config.Zones {
		reaction, ok := byKey[zone.ID]
		if !ok {
			zones = append(zones, models.ZoneSentiment{
				ZoneID:    zone.ID,
				ZoneName:  zone.Name,
				Sentiment: models.StanceNeutral,
			})
			continue
		}
		zones = append(zones, sentimentFor(zone, reaction))
	}
	return zones
}

// zoneForReaction computes the single-zone sentiment a reaction
// induces, or nil when the agent key maps to no zone.
func zoneForReaction(reaction models.AgentReaction) *models.ZoneSentiment {
	zone := config.GetZone(reaction.AgentKey)
	if zone == nil {
		return nil
	}
	sentiment := sentimentFor(*zone, reaction)
	return &sentiment
}

func sentimentFor(zone config.Zone, reaction models.AgentReaction) models.ZoneSentiment {
	score := 0.0
	switch reaction.Stance {
	case models.StanceSupport:
		score = reaction.Intensity
	case models.StanceOppose:
		score = -reaction.Intensity
	}

	sentiment := models.ZoneSentiment{
		ZoneID:    zone.ID,
		ZoneName:  zone.Name,
		Sentiment: reaction.Stance,
		Score:     math.Round(score*1000) / 1000,
	}

	if reaction.Quote != "" {
		quote := models.QuoteAttribution{AgentName: reaction.AgentName, Quote: reaction.Quote}
		switch reaction.Stance {
		case models.StanceSupport:
			sentiment.TopSupportQuotes = []models.QuoteAttribution{quote}
		case models.StanceOppose:
			sentiment.TopOpposeQuotes = []models.QuoteAttribution{quote}
		}
	}
	return sentiment
}
