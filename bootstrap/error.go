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

import "github.com/sabouaram/sockd/errors"

const (
	ErrorDuplicateName errors.CodeError = iota + errors.MinPkgBootstrap
	ErrorUnknownServer
	ErrorNilTransport
	ErrorInvalidVersion
	ErrorInvalidConstraint
	ErrorNoViper
	ErrorWatchFailed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorDuplicateName)
	errors.RegisterIdFctMessage(ErrorDuplicateName, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorDuplicateName:
		return "a server with this name is already registered"
	case ErrorUnknownServer:
		return "no server registered under this name"
	case ErrorNilTransport:
		return "descriptor transport factory is nil"
	case ErrorInvalidVersion:
		return "running build version could not be parsed"
	case ErrorInvalidConstraint:
		return "descriptor's MinServerVersion constraint could not be parsed"
	case ErrorNoViper:
		return "no viper instance registered"
	case ErrorWatchFailed:
		return "endpoint replacement watcher failed to start"
	}

	return ""
}
