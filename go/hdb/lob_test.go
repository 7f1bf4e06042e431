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
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanadb/hana/go/hdbtypes"
)

// lobValueBytes builds a lob column value the way a result set row
// carries it: descriptor prefix, descriptor tail and inline chunk.
func lobValueBytes(lobType byte, options uint8, charLength, byteLength uint64, locatorID, chunk []byte) []byte {
	data := make([]byte, 2+lobHeaderTailSize+len(chunk))
	pos := writeByte(data, 0, lobType)
	pos = writeByte(data, pos, options)
	pos = writeZeroes(data, pos, 2)
	pos = writeUint64(data, pos, charLength)
	pos = writeUint64(data, pos, byteLength)
	pos = writeBytes(data, pos, locatorID)
	pos = writeUint32(data, pos, uint32(len(chunk)))
	writeBytes(data, pos, chunk)
	return data
}

func testLocatorID() []byte {
	return []byte{1, 2, 3, 4, 5, 6, 7, 8}
}

func TestDecodeLobValueNull(t *testing.T) {
	data := []byte{lobTypeBlob, LobOptionIsNull, 0xee}
	value, pos, err := decodeLobValue(hdbtypes.Blob, data, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, value)
	// Null values stop after the two byte prefix, the 0xee byte
	// belongs to the next column.
	assert.Equal(t, 2, pos)
}

func TestDecodeLobValueUnknownType(t *testing.T) {
	data := lobValueBytes(9, LobOptionDataIncluded, 4, 4, testLocatorID(), []byte("abcd"))
	_, _, err := decodeLobValue(hdbtypes.Blob, data, 0, nil)
	require.ErrorIs(t, err, ErrProtocol)
	assert.ErrorContains(t, err, "unknown lob type 9")
}

func TestDecodeLobValueTruncated(t *testing.T) {
	full := lobValueBytes(lobTypeBlob, LobOptionDataIncluded, 10, 10, testLocatorID(), []byte("abcd"))
	testcases := []struct {
		name string
		data []byte
		want string
	}{{
		name: "empty",
		data: nil,
		want: "truncated lob descriptor",
	}, {
		name: "prefix only",
		data: full[:2],
		want: "truncated lob descriptor",
	}, {
		name: "tail cut",
		data: full[:20],
		want: "truncated lob descriptor",
	}, {
		name: "chunk cut",
		data: full[:len(full)-2],
		want: "lob chunk truncated: expected 4 bytes",
	}}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := decodeLobValue(hdbtypes.Blob, tc.data, 0, nil)
			require.ErrorIs(t, err, ErrProtocol)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLobReadBinary(t *testing.T) {
	content := make([]byte, 2000)
	for i := range content {
		content[i] = byte(i * 7)
	}
	var calls [][2]int64
	fetch := func(_ []byte, offset, length int64) ([]byte, error) {
		calls = append(calls, [2]int64{offset, length})
		end := min(offset+length, int64(len(content)))
		return content[offset:end], nil
	}

	data := lobValueBytes(lobTypeBlob, LobOptionDataIncluded, 2000, 2000, testLocatorID(), content[:1024])
	value, pos, err := decodeLobValue(hdbtypes.Blob, data, 0, fetch)
	require.NoError(t, err)
	assert.Equal(t, len(data), pos)
	lob, ok := value.(*Lob)
	require.True(t, ok)

	assert.Equal(t, hdbtypes.Blob, lob.TypeCode())
	assert.Equal(t, testLocatorID(), lob.LocatorID())
	assert.Equal(t, int64(2000), lob.Length())

	// The first read stays inside the inline chunk.
	got, err := lob.Read(100)
	require.NoError(t, err)
	assert.Equal(t, content[:100], got)
	assert.Equal(t, int64(100), lob.Tell())
	assert.Empty(t, calls)

	// Reading the rest fetches exactly the missing tail.
	got, err = lob.Read(-1)
	require.NoError(t, err)
	assert.Equal(t, content[100:], got)
	assert.Equal(t, int64(2000), lob.Tell())
	assert.Equal(t, [][2]int64{{1024, 976}}, calls)

	// Reads past the end return nothing without another round trip.
	got, err = lob.Read(10)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, calls, 1)
}

func TestLobReadCharacter(t *testing.T) {
	// "ab𝄞cd": five characters, the third needs a surrogate pair in
	// CESU-8 and four bytes in UTF-8.
	remainder := []byte{0xed, 0xa0, 0xb4, 0xed, 0xb4, 0x9e, 'c', 'd'}
	var calls [][2]int64
	fetch := func(_ []byte, offset, length int64) ([]byte, error) {
		calls = append(calls, [2]int64{offset, length})
		return remainder, nil
	}

	data := lobValueBytes(lobTypeNClob, LobOptionDataIncluded, 5, 10, testLocatorID(), []byte("ab"))
	value, _, err := decodeLobValue(hdbtypes.NClob, data, 0, fetch)
	require.NoError(t, err)
	lob := value.(*Lob)

	// Character lobs count items in characters.
	assert.Equal(t, int64(5), lob.Length())

	got, err := lob.ReadString(3)
	require.NoError(t, err)
	assert.Equal(t, "ab\U0001d11e", got)
	assert.Equal(t, int64(3), lob.Tell())
	assert.Equal(t, [][2]int64{{2, 1}}, calls)

	got, err = lob.ReadString(-1)
	require.NoError(t, err)
	assert.Equal(t, "cd", got)
	assert.Len(t, calls, 1)
}

func TestLobReadDetached(t *testing.T) {
	content := []byte("0123456789")
	data := lobValueBytes(lobTypeBlob, LobOptionDataIncluded, 10, 10, testLocatorID(), content[:4])
	value, _, err := decodeLobValue(hdbtypes.Blob, data, 0, nil)
	require.NoError(t, err)
	lob := value.(*Lob)

	got, err := lob.Read(4)
	require.NoError(t, err)
	assert.Equal(t, content[:4], got)

	_, err = lob.Read(4)
	require.ErrorIs(t, err, ErrInterface)
	assert.ErrorContains(t, err, "lob is detached from its connection")
}

func TestLobReadFetchError(t *testing.T) {
	fetchErr := errors.New("connection reset")
	fetch := func(_ []byte, _, _ int64) ([]byte, error) { return nil, fetchErr }

	data := lobValueBytes(lobTypeBlob, LobOptionDataIncluded, 10, 10, testLocatorID(), []byte("abcd"))
	value, _, err := decodeLobValue(hdbtypes.Blob, data, 0, fetch)
	require.NoError(t, err)
	lob := value.(*Lob)

	_, err = lob.Read(10)
	require.ErrorIs(t, err, fetchErr)
}

func TestLobSeek(t *testing.T) {
	content := make([]byte, 5000)
	for i := range content {
		content[i] = byte(i * 3)
	}
	var calls [][2]int64
	fetch := func(_ []byte, offset, length int64) ([]byte, error) {
		calls = append(calls, [2]int64{offset, length})
		return content[offset : offset+length], nil
	}

	data := lobValueBytes(lobTypeBlob, LobOptionDataIncluded, 5000, 5000, testLocatorID(), content[:1024])
	value, _, err := decodeLobValue(hdbtypes.Blob, data, 0, fetch)
	require.NoError(t, err)
	lob := value.(*Lob)

	// Seeks within the buffered data need no round trip.
	pos, err := lob.Seek(500, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(500), pos)
	pos, err = lob.Seek(100, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(600), pos)
	assert.Empty(t, calls)

	// Seeking past the buffer fetches the gap plus the read ahead,
	// so the following read hits the buffer.
	pos, err = lob.Seek(3000, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), pos)
	assert.Equal(t, [][2]int64{{1024, 3000}}, calls)

	got, err := lob.Read(10)
	require.NoError(t, err)
	assert.Equal(t, content[3000:3010], got)
	assert.Len(t, calls, 1)

	// The read ahead never runs past the end of the lob.
	pos, err = lob.Seek(-100, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(4900), pos)
	assert.Equal(t, [2]int64{4024, 976}, calls[1])

	_, err = lob.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrInterface)
	assert.ErrorContains(t, err, "negative lob position -1")

	_, err = lob.Seek(0, 9)
	require.ErrorIs(t, err, ErrInterface)
	assert.ErrorContains(t, err, "invalid seek whence 9")

	// Failed seeks leave the position alone.
	assert.Equal(t, int64(4900), lob.Tell())
}

func TestReadLobRequestPack(t *testing.T) {
	part := &ReadLobRequest{LocatorID: testLocatorID(), Offset: 1024, Length: 100}
	argCount, payload, err := part.pack(1000)
	require.NoError(t, err)
	assert.Equal(t, 4, argCount)
	assert.Equal(t, []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		0x01, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // one based offset
		0x64, 0x00, 0x00, 0x00,
		' ', ' ', ' ', ' ',
	}, payload)
}

func TestReadLobRequestRoundTrip(t *testing.T) {
	part := &ReadLobRequest{LocatorID: testLocatorID(), Offset: 1024, Length: 100}
	_, payload, err := part.pack(1000)
	require.NoError(t, err)

	unpacked, err := unpackReadLobRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, part, unpacked)

	_, err = unpackReadLobRequest(payload[:12])
	require.ErrorIs(t, err, ErrProtocol)
	assert.ErrorContains(t, err, "truncated read lob request")
}

func TestReadLobReplyUnpack(t *testing.T) {
	chunk := []byte("lob data")
	payload := make([]byte, locatorIDSize+8+len(chunk))
	pos := writeBytes(payload, 0, testLocatorID())
	pos = writeByte(payload, pos, LobOptionDataIncluded|LobOptionLastData)
	pos = writeUint32(payload, pos, uint32(len(chunk)))
	pos = writeZeroes(payload, pos, 3)
	writeBytes(payload, pos, chunk)

	part, err := unpackReadLobReply(payload)
	require.NoError(t, err)
	reply, ok := part.(*ReadLobReply)
	require.True(t, ok)
	assert.Equal(t, testLocatorID(), reply.LocatorID)
	assert.False(t, reply.IsNull)
	assert.True(t, reply.Last)
	assert.Equal(t, chunk, reply.Data)
}

func TestReadLobReplyUnpackNull(t *testing.T) {
	payload := append(testLocatorID(), LobOptionIsNull)
	part, err := unpackReadLobReply(payload)
	require.NoError(t, err)
	reply := part.(*ReadLobReply)
	assert.True(t, reply.IsNull)
	assert.Nil(t, reply.Data)
}

func TestReadLobReplyUnpackNoData(t *testing.T) {
	payload := make([]byte, locatorIDSize+8)
	pos := writeBytes(payload, 0, testLocatorID())
	writeByte(payload, pos, LobOptionLastData)

	part, err := unpackReadLobReply(payload)
	require.NoError(t, err)
	reply := part.(*ReadLobReply)
	assert.True(t, reply.Last)
	assert.Nil(t, reply.Data)
}

func TestReadLobReplyUnpackTruncated(t *testing.T) {
	chunk := []byte("lob data")
	payload := make([]byte, locatorIDSize+8+len(chunk))
	pos := writeBytes(payload, 0, testLocatorID())
	pos = writeByte(payload, pos, LobOptionDataIncluded)
	pos = writeUint32(payload, pos, uint32(len(chunk)))
	pos = writeZeroes(payload, pos, 3)
	writeBytes(payload, pos, chunk)

	testcases := []struct {
		name string
		data []byte
		want string
	}{{
		name: "no options",
		data: payload[:locatorIDSize],
		want: "truncated read lob reply",
	}, {
		name: "no chunk length",
		data: payload[:locatorIDSize+2],
		want: "truncated read lob reply",
	}, {
		name: "chunk cut",
		data: payload[:len(payload)-1],
		want: "lob chunk truncated: expected 8 bytes",
	}}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := unpackReadLobReply(tc.data)
			require.ErrorIs(t, err, ErrProtocol)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestWriteLobRequestPack(t *testing.T) {
	part := &WriteLobRequest{Chunks: []WriteLobChunk{{
		LocatorID: testLocatorID(),
		Options:   LobOptionDataIncluded | LobOptionLastData,
		Data:      []byte("abc"),
	}}}
	argCount, payload, err := part.pack(1000)
	require.NoError(t, err)
	assert.Equal(t, 1, argCount)
	assert.Equal(t, []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		0x06,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // offset, zero appends
		0x03, 0x00, 0x00, 0x00,
		'a', 'b', 'c',
	}, payload)
}

func TestWriteLobRequestRoundTrip(t *testing.T) {
	part := &WriteLobRequest{Chunks: []WriteLobChunk{{
		LocatorID: testLocatorID(),
		Options:   LobOptionDataIncluded,
		Data:      []byte("first"),
	}, {
		LocatorID: []byte{8, 7, 6, 5, 4, 3, 2, 1},
		Options:   LobOptionDataIncluded | LobOptionLastData,
		Data:      []byte("second"),
	}}}
	argCount, payload, err := part.pack(1000)
	require.NoError(t, err)
	require.Equal(t, 2, argCount)

	unpacked, err := unpackWriteLobRequest(argCount, payload)
	require.NoError(t, err)
	assert.Equal(t, part, unpacked)

	_, err = unpackWriteLobRequest(argCount, payload[:len(payload)-1])
	require.ErrorIs(t, err, ErrProtocol)
	assert.ErrorContains(t, err, "truncated write lob request")
}

func TestPlanWriteLobChunks(t *testing.T) {
	locatorA := testLocatorID()
	locatorB := []byte{8, 7, 6, 5, 4, 3, 2, 1}

	t.Run("all buffers fit", func(t *testing.T) {
		buffers := []*LobWriteBuffer{
			{LocatorID: locatorA, Data: []byte("0123456789")},
			{LocatorID: locatorB, Data: []byte("abcde")},
		}
		part, rest := planWriteLobChunks(buffers, 1000)
		require.Len(t, part.Chunks, 2)
		assert.Equal(t, LobOptionDataIncluded|LobOptionLastData, part.Chunks[0].Options)
		assert.Equal(t, []byte("0123456789"), part.Chunks[0].Data)
		assert.Equal(t, locatorB, part.Chunks[1].LocatorID)
		assert.Equal(t, LobOptionDataIncluded|LobOptionLastData, part.Chunks[1].Options)
		assert.Nil(t, rest)
		assert.Nil(t, buffers[0].Data)
		assert.Nil(t, buffers[1].Data)
	})

	t.Run("buffer split across requests", func(t *testing.T) {
		data := make([]byte, 100)
		for i := range data {
			data[i] = byte(i)
		}
		buffers := []*LobWriteBuffer{{LocatorID: locatorA, Data: data}}
		part, rest := planWriteLobChunks(buffers, writeLobChunkHeaderSize+50)
		require.Len(t, part.Chunks, 1)
		assert.Equal(t, LobOptionDataIncluded, part.Chunks[0].Options)
		assert.Equal(t, data[:50], part.Chunks[0].Data)
		require.Len(t, rest, 1)
		assert.Same(t, buffers[0], rest[0])
		assert.Equal(t, data[50:], rest[0].Data)
	})

	t.Run("budget below one chunk", func(t *testing.T) {
		buffers := []*LobWriteBuffer{{LocatorID: locatorA, Data: []byte("abc")}}
		part, rest := planWriteLobChunks(buffers, writeLobChunkHeaderSize)
		assert.Empty(t, part.Chunks)
		assert.Equal(t, buffers, rest)
		assert.Equal(t, []byte("abc"), buffers[0].Data)
	})

	t.Run("second buffer moves to next request", func(t *testing.T) {
		buffers := []*LobWriteBuffer{
			{LocatorID: locatorA, Data: []byte("0123456789")},
			{LocatorID: locatorB, Data: []byte("abcde")},
		}
		part, rest := planWriteLobChunks(buffers, writeLobChunkHeaderSize+10)
		require.Len(t, part.Chunks, 1)
		assert.Equal(t, LobOptionDataIncluded|LobOptionLastData, part.Chunks[0].Options)
		require.Len(t, rest, 1)
		assert.Same(t, buffers[1], rest[0])
		assert.Equal(t, []byte("abcde"), rest[0].Data)
	})
}

func TestWriteLobReplyUnpack(t *testing.T) {
	payload := append(testLocatorID(), 8, 7, 6, 5, 4, 3, 2, 1)
	part, err := unpackWriteLobReply(2, payload)
	require.NoError(t, err)
	reply, ok := part.(*WriteLobReply)
	require.True(t, ok)
	assert.Equal(t, [][]byte{testLocatorID(), {8, 7, 6, 5, 4, 3, 2, 1}}, reply.LocatorIDs)

	_, err = unpackWriteLobReply(3, payload)
	require.ErrorIs(t, err, ErrProtocol)
	assert.ErrorContains(t, err, "truncated write lob reply")
}