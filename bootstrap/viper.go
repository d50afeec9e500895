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

package bootstrap

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/sabouaram/sockd/appserver"
)

// RegisterFuncViper installs the viper instance LoadConfig reads from.
func (b *Bootstrap) RegisterFuncViper(v *viper.Viper) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.viper = v
}

// decodeHook composes the hooks needed to decode a libdur.Duration field
// (via its encoding.TextUnmarshaler implementation) alongside viper's
// usual string-to-duration/slice conveniences.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// LoadConfig decodes the sub-tree at key into an appserver.Config, using
// the Bootstrap's registered viper instance.
func (b *Bootstrap) LoadConfig(key string) (appserver.Config, error) {
	b.mu.Lock()
	v := b.viper
	b.mu.Unlock()

	var cfg appserver.Config

	if v == nil {
		return cfg, ErrorNoViper.Error()
	}

	err := v.UnmarshalKey(key, &cfg, viper.DecodeHook(decodeHook()))

	return cfg, err
}
