package utils

import (
	"context"
	"net"
	"strconv"
	"time"
)

/**
 * Check whether a TCP port accepts connections
 * @param {context.Context} ctx - Cancels the dial
 * @param {string} host - Host to dial
 * @param {int} port - Port to dial
 * @param {time.Duration} timeout - Dial timeout
 * @returns {bool} true if a connection could be established
 */
func CheckPortConnectable(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if host == "" {
		host = "127.0.0.1"
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
