package pushsubscription

type Subscription struct {
	ID        string `json:"id" yaml:"id"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	P256dhKey string `json:"p256dhKey" yaml:"p256dh_key"`
	AuthKey   string `json:"authKey" yaml:"auth_key"`
	CreatedAt string `json:"createdAt" yaml:"created_at"`
}
