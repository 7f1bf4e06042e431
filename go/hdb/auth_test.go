/*
Copyright 2024 The HanaDB Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package hdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known answer data for the proof computation. The expected proofs
// were computed independently from the documented algorithm.
var (
	authTestClientKey = []byte{
		0xed, 0xbd, 0x7c, 0xc8, 0xb2, 0xf2, 0x64, 0x89,
		0xd6, 0x5a, 0x7c, 0xd5, 0x1e, 0x27, 0xf2, 0xe7,
		0x3f, 0xca, 0x22, 0x7d, 0x1a, 0xb6, 0xaa, 0xfc,
		0xac, 0x0f, 0x42, 0x8c, 0xa4, 0xd8, 0xe1, 0x0c,
		0x19, 0xe3, 0xe3, 0x8f, 0x3a, 0xac, 0x51, 0x07,
		0x5e, 0x67, 0xbb, 0xe5, 0x2f, 0xdb, 0x61, 0x03,
		0xa7, 0xc3, 0x4c, 0x8a, 0x70, 0x90, 0x8e, 0xd5,
		0xbe, 0x0b, 0x35, 0x42, 0x70, 0x5f, 0x73, 0x8c,
	}

	authTestSalt = []byte{
		0x80, 0x96, 0x4f, 0xa8, 0x54, 0x28, 0xae, 0x3a,
		0x81, 0xac, 0xd3, 0xe6, 0x86, 0xa2, 0x79, 0x33,
	}

	authTestServerKey = []byte{
		0x41, 0x06, 0x51, 0x50, 0x11, 0x7e, 0x45, 0x5f,
		0xec, 0x2f, 0x03, 0xf6, 0xf4, 0x7c, 0x19, 0xd4,
		0x05, 0xad, 0xe5, 0x0d, 0xd6, 0x57, 0x31, 0xdc,
		0x0f, 0xb3, 0xf7, 0x95, 0x4d, 0xb6, 0x2c, 0x8a,
		0xa6, 0x7a, 0x7e, 0x82, 0x5e, 0x13, 0x00, 0xbe,
		0xe9, 0x75, 0xe7, 0x45, 0x18, 0x23, 0x8c, 0x9a,
	}
)

func testAuthManager() *authManager {
	return &authManager{
		user:      "TestUser",
		password:  "secret",
		clientKey: authTestClientKey,
	}
}

func challengeData(t *testing.T, fields ...[]byte) []byte {
	t.Helper()
	data := make([]byte, packedFieldsSize(fields))
	packFields(data, 0, fields)
	return data
}

func TestAuthInitialPart(t *testing.T) {
	m, err := newAuthManager("TestUser", "secret")
	require.NoError(t, err)
	require.Len(t, m.clientKey, clientChallengeSize)

	part := m.initialPart()
	assert.Equal(t, "TestUser", part.User)
	require.Len(t, part.Methods, 2)
	assert.Equal(t, "SCRAMPBKDF2SHA256", part.Methods[0].Name)
	assert.Equal(t, "SCRAMSHA256", part.Methods[1].Name)
	assert.Equal(t, m.clientKey, part.Methods[0].Data)
	assert.Equal(t, m.clientKey, part.Methods[1].Data)

	other, err := newAuthManager("TestUser", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, m.clientKey, other.clientKey)
}

func TestAuthScramProof(t *testing.T) {
	m := testAuthManager()
	reply := &Authentication{
		Methods: []AuthMethod{
			{Name: "SCRAMSHA256", Data: challengeData(t, authTestSalt, authTestServerKey)},
		},
	}

	final, err := m.finalPart(reply)
	require.NoError(t, err)
	assert.Equal(t, "TestUser", final.User)
	require.Len(t, final.Methods, 1)
	assert.Equal(t, "SCRAMSHA256", final.Methods[0].Name)

	want := []byte{
		0x00, 0x01, 0x20,
		0xe4, 0x7d, 0x8f, 0x24, 0x48, 0x55, 0xb9, 0x2d,
		0xc9, 0x66, 0x39, 0x5d, 0x0d, 0x28, 0x25, 0x47,
		0xb5, 0x4d, 0xfd, 0x09, 0x61, 0x4d, 0x44, 0x37,
		0x4d, 0xf9, 0x4f, 0x29, 0x3c, 0x1a, 0x02, 0x0e,
	}
	assert.Equal(t, want, final.Methods[0].Data)
}

func TestAuthPbkdf2Proof(t *testing.T) {
	rounds := []byte{0x00, 0x00, 0x3a, 0x98} // 15000, big-endian
	m := testAuthManager()
	reply := &Authentication{
		Methods: []AuthMethod{
			{Name: "SCRAMPBKDF2SHA256", Data: challengeData(t, authTestSalt, authTestServerKey, rounds)},
		},
	}

	final, err := m.finalPart(reply)
	require.NoError(t, err)
	require.Len(t, final.Methods, 1)
	assert.Equal(t, "SCRAMPBKDF2SHA256", final.Methods[0].Name)

	want := []byte{
		0x00, 0x01, 0x20,
		0xc1, 0x9e, 0xab, 0x8d, 0x5e, 0xaf, 0x34, 0xb4,
		0x5f, 0x5d, 0x25, 0xd0, 0x96, 0x15, 0x00, 0x36,
		0x79, 0xa3, 0xb1, 0xa5, 0x31, 0x92, 0xfd, 0x12,
		0xff, 0x58, 0x77, 0x95, 0x67, 0xad, 0x37, 0xf1,
	}
	assert.Equal(t, want, final.Methods[0].Data)
}

// When the server offers both methods the stronger one wins.
func TestAuthMethodPreference(t *testing.T) {
	rounds := []byte{0x00, 0x00, 0x3a, 0x98}
	m := testAuthManager()
	reply := &Authentication{
		Methods: []AuthMethod{
			{Name: "SCRAMSHA256", Data: challengeData(t, authTestSalt, authTestServerKey)},
			{Name: "SCRAMPBKDF2SHA256", Data: challengeData(t, authTestSalt, authTestServerKey, rounds)},
		},
	}

	final, err := m.finalPart(reply)
	require.NoError(t, err)
	require.Len(t, final.Methods, 1)
	assert.Equal(t, "SCRAMPBKDF2SHA256", final.Methods[0].Name)
}

func TestAuthNoSupportedMethod(t *testing.T) {
	m := testAuthManager()
	reply := &Authentication{
		Methods: []AuthMethod{
			{Name: "GSS", Data: []byte{1, 2, 3}},
		},
	}

	_, err := m.finalPart(reply)
	require.ErrorIs(t, err, ErrInterface)
	assert.ErrorContains(t, err, "no supported authentication method")
}

func TestAuthMalformedChallenge(t *testing.T) {
	m := testAuthManager()

	testcases := []struct {
		name   string
		method string
		data   []byte
		errstr string
	}{{
		name:   "scram challenge missing server key",
		method: "SCRAMSHA256",
		data:   challengeData(t, authTestSalt),
		errstr: "need salt and server key",
	}, {
		name:   "pbkdf2 challenge missing rounds",
		method: "SCRAMPBKDF2SHA256",
		data:   challengeData(t, authTestSalt, authTestServerKey),
		errstr: "need salt, server key and rounds",
	}, {
		name:   "pbkdf2 rounds of wrong size",
		method: "SCRAMPBKDF2SHA256",
		data:   challengeData(t, authTestSalt, authTestServerKey, []byte{0x3a, 0x98}),
		errstr: "authentication round count of 2 bytes",
	}, {
		name:   "challenge is not a field list",
		method: "SCRAMSHA256",
		data:   []byte{0x05, 0x00, 0x01},
		errstr: "truncated field",
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			reply := &Authentication{
				Methods: []AuthMethod{{Name: tc.method, Data: tc.data}},
			}
			_, err := m.finalPart(reply)
			require.ErrorIs(t, err, ErrProtocol)
			assert.ErrorContains(t, err, tc.errstr)
		})
	}
}

func TestAuthenticationMethodLookup(t *testing.T) {
	part := &Authentication{
		Methods: []AuthMethod{
			{Name: "SCRAMSHA256", Data: []byte{1}},
			{Name: "SCRAMPBKDF2SHA256", Data: []byte{2}},
		},
	}

	data, ok := part.Method("SCRAMPBKDF2SHA256")
	require.True(t, ok)
	assert.Equal(t, []byte{2}, data)

	_, ok = part.Method("SAML")
	assert.False(t, ok)
}

// A reply form authentication part has no user name. Its field count
// is even and the decoder must not mistake a method name for a user.
func TestAuthenticationReplyForm(t *testing.T) {
	fields := [][]byte{[]byte("SCRAMSHA256"), {0x01, 0x02}}
	payload := make([]byte, packedFieldsSize(fields))
	packFields(payload, 0, fields)

	part, err := unpackAuthentication(payload)
	require.NoError(t, err)
	auth := part.(*Authentication)
	assert.Empty(t, auth.User)
	require.Len(t, auth.Methods, 1)
	assert.Equal(t, "SCRAMSHA256", auth.Methods[0].Name)
	assert.Equal(t, []byte{0x01, 0x02}, auth.Methods[0].Data)
}
