// Package influxdb records published entity states in an InfluxDB v2 bucket.
//
// It wraps the official influxdb-client-go v2 library. The device hands
// each published state to a recorder worker, which calls
// RecordEntityState; failures come back as errors and are counted there.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.RecordEntityState(ctx, influxdb.EntityState{
//	    DeviceID: "kitchen", EntityID: "temp", Domain: "sensor", Value: 21.5,
//	})
package influxdb
