package domain

// Channel 外发渠道
type Channel string

const (
	ChannelEmail Channel = "EMAIL" // 邮件
	ChannelIM    Channel = "IM"    // 即时通讯平台，需要先完成身份绑定
)

func (c Channel) String() string {
	return string(c)
}

func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelIM
}

// IdentityBound 该渠道是否需要先绑定外部账号才能发送
func (c Channel) IdentityBound() bool {
	return c == ChannelIM
}
