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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/hanadb/hana/go/cesu8"
)

// Authentication method names, in order of preference.
const (
	methodSCRAMPBKDF2SHA256 = "SCRAMPBKDF2SHA256"
	methodSCRAMSHA256       = "SCRAMSHA256"
)

const (
	clientChallengeSize = 64
	clientProofSize     = 32
)

// authManager drives the two round authentication dialog: the client
// offers its methods with a random challenge, the server answers with
// the chosen method's salt and server key, and the client proves
// knowledge of the password without sending it.
type authManager struct {
	user      string
	password  string
	clientKey []byte
}

func newAuthManager(user, password string) (*authManager, error) {
	clientKey := make([]byte, clientChallengeSize)
	if _, err := io.ReadFull(rand.Reader, clientKey); err != nil {
		return nil, err
	}
	return &authManager{user: user, password: password, clientKey: clientKey}, nil
}

// initialPart returns the authentication part of the AUTHENTICATE
// request, offering every supported method with the client challenge.
func (m *authManager) initialPart() *Authentication {
	return &Authentication{
		User: m.user,
		Methods: []AuthMethod{
			{Name: methodSCRAMPBKDF2SHA256, Data: m.clientKey},
			{Name: methodSCRAMSHA256, Data: m.clientKey},
		},
	}
}

// finalPart computes the proof for the method the server selected and
// returns the authentication part of the CONNECT request.
func (m *authManager) finalPart(reply *Authentication) (*Authentication, error) {
	password, err := cesu8.Encode(m.password)
	if err != nil {
		return nil, interfaceError("password is not valid text: %v", err)
	}

	if data, ok := reply.Method(methodSCRAMPBKDF2SHA256); ok {
		proof, err := m.pbkdf2Proof(password, data)
		if err != nil {
			return nil, err
		}
		return &Authentication{
			User:    m.user,
			Methods: []AuthMethod{{Name: methodSCRAMPBKDF2SHA256, Data: proof}},
		}, nil
	}
	if data, ok := reply.Method(methodSCRAMSHA256); ok {
		proof, err := m.scramProof(password, data)
		if err != nil {
			return nil, err
		}
		return &Authentication{
			User:    m.user,
			Methods: []AuthMethod{{Name: methodSCRAMSHA256, Data: proof}},
		}, nil
	}
	return nil, interfaceError("server offers no supported authentication method")
}

func (m *authManager) scramProof(password, data []byte) ([]byte, error) {
	fields, _, err := unpackFields(data, 0)
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, protocolError("authentication challenge with %d fields, need salt and server key", len(fields))
	}
	salt, serverKey := fields[0], fields[1]
	key := scramsha256Key(password, salt)
	return m.packProof(key, salt, serverKey), nil
}

func (m *authManager) pbkdf2Proof(password, data []byte) ([]byte, error) {
	fields, _, err := unpackFields(data, 0)
	if err != nil {
		return nil, err
	}
	if len(fields) < 3 {
		return nil, protocolError("authentication challenge with %d fields, need salt, server key and rounds", len(fields))
	}
	salt, serverKey := fields[0], fields[1]
	if len(fields[2]) != 4 {
		return nil, protocolError("authentication round count of %d bytes", len(fields[2]))
	}
	// The round count is the one big-endian value of the protocol.
	rounds := binary.BigEndian.Uint32(fields[2])
	key := scrampbkdf2sha256Key(password, salt, int(rounds))
	return m.packProof(key, salt, serverKey), nil
}

// packProof builds the wire form of the proof: a zero byte, the salt
// count, and a length-prefixed proof per salt.
func (m *authManager) packProof(key, salt, serverKey []byte) []byte {
	proof := make([]byte, 0, 2+1+clientProofSize)
	proof = append(proof, 0, 1, clientProofSize)
	proof = append(proof, scramble(key, salt, serverKey, m.clientKey)...)
	return proof
}

func scramsha256Key(password, salt []byte) []byte {
	return sha256Sum(hmacSum(password, salt))
}

func scrampbkdf2sha256Key(password, salt []byte, rounds int) []byte {
	return sha256Sum(pbkdf2.Key(password, salt, rounds, clientProofSize, sha256.New))
}

// scramble computes the proof for one salt. The signature is keyed on
// the hash of the salted password key, over the concatenation of
// salt, server key and client key; the proof is the signature xored
// with the key itself.
func scramble(key, salt, serverKey, clientKey []byte) []byte {
	msg := make([]byte, 0, len(salt)+len(serverKey)+len(clientKey))
	msg = append(msg, salt...)
	msg = append(msg, serverKey...)
	msg = append(msg, clientKey...)

	keyHash := sha256Sum(key)
	sig := hmacSum(keyHash, msg)

	proof := make([]byte, len(sig))
	for i := range sig {
		proof[i] = sig[i] ^ key[i]
	}
	return proof
}

func hmacSum(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
