package model

// CreateJobRequest starts a clean-playlist job.
type CreateJobRequest struct {
	SourcePlaylistID string `json:"sourcePlaylistId" validate:"required"`
	TargetName       string `json:"targetName" validate:"omitempty,max=100"`
}

// CreateJobResponse is returned immediately; processing is asynchronous.
type CreateJobResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// EnableSyncRequest registers recurring sync on a completed job.
type EnableSyncRequest struct {
	Frequency SyncFrequency `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
}

// ConnectProviderRequest stores tokens obtained from the provider's OAuth flow.
type ConnectProviderRequest struct {
	Provider     string `json:"provider" validate:"required"`
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn" validate:"required,gt=0"`
	Scopes       string `json:"scopes"`
	Metadata     string `json:"metadata"`
}

// DisconnectProviderRequest revokes a stored provider connection.
type DisconnectProviderRequest struct {
	Provider string `json:"provider" validate:"required"`
}

// WebhookEnvelope is the payment processor's event wrapper.
type WebhookEnvelope struct {
	ID   string                `json:"id"`
	Type string                `json:"type"`
	Data SubscriptionEventData `json:"data"`
}

// SubscriptionEventData is the payload of subscription lifecycle events.
type SubscriptionEventData struct {
	UserID                 string `json:"userId"`
	Plan                   string `json:"plan"`
	ExternalCustomerID     string `json:"customerId"`
	ExternalSubscriptionID string `json:"subscriptionId"`
	CurrentPeriodEnd       int64  `json:"currentPeriodEnd"`
}
