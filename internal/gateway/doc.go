// Package gateway connects the node to its two remote channels.
//
// The cloud channel is a ThingsBoard-style MQTT RPC interface. Cloud decodes
// RPC requests, turns them into commands on the queue, answers each request
// on its response topic and pushes every dispatched result as a client
// attribute. MQTTTransport is the paho-based transport feeding Cloud.
//
// The UI channel is an HTTP server (Server) with a WebSocket endpoint served
// by UI, a small REST API used by the operator utility, a health check and
// the Prometheus endpoint.
//
// # Cloud RPC
//
//	request   v1/devices/me/rpc/request/<id>   {"method":"setValueLED_GPIO","params":true}
//	response  v1/devices/me/rpc/response/<id>  {"result":true} or {"error":"busy"}
//	push      v1/devices/me/attributes         {"LED_GPIO":true}
//
// # UI WebSocket
//
//	inbound   {"page":"device","value":{"gpio":48,"status":"ON"}}
//	broadcast {"page":"device_update","value":{"gpio":48,"status":"ON"}}
//	broadcast {"page":"sensor","value":{"temperature":24.1,"humidity":51,"state":"NORMAL"}}
//	reply     {"page":"error","value":{"message":"busy"}}
//
// Errors are only sent to the connection that caused them.
package gateway
