// Package mqtt connects the bridge to an MQTT broker.
//
// The broker is the bridge's outer surface. internal/mirror publishes every
// store state retained under <prefix>/state/<path> and turns messages on
// <prefix>/set/<path> into unacknowledged store writes. Topics maps store
// IDs onto topic levels.
//
// The client registers a will on <prefix>/bridge/status, publishes "online"
// there after each connect and "offline" with reason graceful_shutdown on
// Close. paho reconnects on its own; Client replays its subscriptions once
// the new session is up because sessions are clean.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllSets(), 1, func(topic string, payload []byte) error {
//	    id, _ := client.Topics().SetID(topic)
//	    return apply(id, payload)
//	})
package mqtt
