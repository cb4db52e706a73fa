package taskname

const (
	// Campaign tasks
	CampaignSyncParticipants = "campaign:sync:participants"

	// Redemption tasks
	RedemptionCleanupCodes = "redemption:cleanup:codes"
)
