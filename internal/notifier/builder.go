package notifier

// DefaultBuilder renders the connect-flow notifications with fixed English
// text.
type DefaultBuilder struct{}

// Recommendation implements NotificationBuilder.
func (DefaultBuilder) Recommendation(network ScanResult) Notification {
	return Notification{
		Kind:          KindRecommendation,
		Title:         "Connect to open Wi-Fi network",
		Message:       network.SSID,
		SSID:          network.SSID,
		DismissAction: ActionDismiss,
		Buttons: []Button{
			{Label: "Connect", Action: ActionConnect},
			{Label: "All networks", Action: ActionPickNetwork},
		},
	}
}

// Connecting implements NotificationBuilder.
func (DefaultBuilder) Connecting(network ScanResult) Notification {
	return Notification{
		Kind:    KindConnecting,
		Title:   "Connecting to open Wi-Fi network",
		Message: network.SSID,
		SSID:    network.SSID,
		Ongoing: true,
	}
}

// Connected implements NotificationBuilder.
func (DefaultBuilder) Connected(network ScanResult) Notification {
	return Notification{
		Kind:    KindConnected,
		Title:   "Connected to Wi-Fi network",
		Message: network.SSID,
		SSID:    network.SSID,
	}
}

// Failed implements NotificationBuilder.
func (DefaultBuilder) Failed() Notification {
	return Notification{
		Kind:      KindFailed,
		Title:     "Could not connect to Wi-Fi network",
		Message:   "Tap to see all networks",
		TapAction: ActionPickAfterConnectFailure,
	}
}
