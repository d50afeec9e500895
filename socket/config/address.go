/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"fmt"
	"net"

	libptc "github.com/sabouaram/sockd/network/protocol"
)

// isBindable reports whether network is one this package knows how to bind
// or dial: pure routing protocols (ip, ip4, ip6) are excluded since they
// have no port semantics the framer/session layer could use.
func isBindable(network libptc.NetworkProtocol) bool {
	switch network {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6,
		libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6,
		libptc.NetworkUnix, libptc.NetworkUnixGram:
		return true
	default:
		return false
	}
}

// validateAddress resolves addr against the net package resolver matching
// network, so the same rules net.Dial/net.Listen apply end to end.
func validateAddress(network libptc.NetworkProtocol, addr string) error {
	if addr == "" {
		return ErrInvalidAddress
	}

	switch network {
	case libptc.NetworkTCP, libptc.NetworkTCP4, libptc.NetworkTCP6:
		if _, err := net.ResolveTCPAddr(network.Code(), addr); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAddress, err.Error())
		}
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6:
		if _, err := net.ResolveUDPAddr(network.Code(), addr); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAddress, err.Error())
		}
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		if _, err := net.ResolveUnixAddr(network.Code(), addr); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAddress, err.Error())
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, network.String())
	}

	return nil
}
