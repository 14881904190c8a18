// Package ports declares the driven-side interfaces of the runtime. Hosts
// pick an adapter (memory, redis, file) or bring their own.
package ports
