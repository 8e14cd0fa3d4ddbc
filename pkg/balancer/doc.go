// Package balancer constructs and load-balances the gateway's outbound
// HTTP clients.
//
// A Pool holds one pre-built *http.Client per configured upstream proxy,
// plus a direct client unless direct connections are disabled. Clients
// are built once at startup (transport, dialer, optional cookie jar) and
// handed out round-robin by Next; handing out a client is cheap and never
// opens new connections by itself.
package balancer
