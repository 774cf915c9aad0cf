// Package influxdb records the bridge's state history in InfluxDB v2.
//
// internal/history feeds acknowledged store writes into Client.WriteState.
// Numbers land in the "value" field and booleans in the "state" field of
// the klf200_state measurement, tagged with the state ID split into
// namespace, object and field. Writes never block the caller; batches are
// flushed every flush_interval seconds or batch_size points.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Error("history write", "error", err) })
//	client.WriteState("products.1.currentPosition", 50, time.Now())
package influxdb
