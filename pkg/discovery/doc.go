// Package discovery locates Tether gateways on the local network with
// mDNS/DNS-SD. Gateways advertise a "_tether._tcp" service; devices
// browse for it and connect to the first gateway found.
package discovery
