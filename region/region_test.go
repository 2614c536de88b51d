/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package region

import (
	"math/bits"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New([]byte{})
	assert.Error(t, err)

	r, err := New(make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, uint32(64), r.Size())
}

func TestNewMaxSize(t *testing.T) {
	if bits.UintSize == 32 {
		t.Skip("needs a 64-bit address space")
	}
	// exactly 4GiB must be rejected: its size wraps to 0 in uint32
	var size uint64 = 1 << 32
	buf := make([]byte, size)
	_, err := New(buf)
	assert.Error(t, err)
}

func TestU32RoundTrip(t *testing.T) {
	r, err := New(make([]byte, 64))
	require.NoError(t, err)

	r.PutU32(0, 0xDEADBEEF)
	r.PutU32(4, NoBlock)
	r.PutU32(60, 42)

	assert.Equal(t, uint32(0xDEADBEEF), r.U32(0))
	assert.Equal(t, NoBlock, r.U32(4))
	assert.Equal(t, uint32(42), r.U32(60))
}

func TestByteAndFill(t *testing.T) {
	r, err := New(make([]byte, 16))
	require.NoError(t, err)

	r.Fill(0, 16, 0xFF)
	assert.Equal(t, NoBlock, r.U32(0))
	assert.Equal(t, NoBlock, r.U32(12))

	r.PutByte(3, 0x7F)
	assert.Equal(t, byte(0x7F), r.Byte(3))
	assert.Equal(t, byte(0xFF), r.Byte(2))
	assert.Equal(t, byte(0xFF), r.Byte(4))
}

func TestPtrOffConversions(t *testing.T) {
	buf := make([]byte, 32)
	r, err := New(buf)
	require.NoError(t, err)

	assert.Nil(t, r.Ptr(NoBlock))
	assert.Equal(t, NoBlock, r.Off(nil))

	p := r.Ptr(8)
	require.NotNil(t, p)
	assert.Equal(t, uint32(8), r.Off(p))
	assert.True(t, r.Contains(p))
	assert.True(t, r.Contains(unsafe.Pointer(&buf[31])))
	assert.False(t, r.Contains(unsafe.Pointer(&make([]byte, 8)[0])))
}

func TestBytesAliases(t *testing.T) {
	buf := make([]byte, 32)
	r, err := New(buf)
	require.NoError(t, err)

	s := r.Bytes(8, 8)
	assert.Equal(t, 8, len(s))
	assert.Equal(t, 8, cap(s))
	s[0] = 0xAA
	assert.Equal(t, byte(0xAA), buf[8])
}

func TestCopy(t *testing.T) {
	r, err := New([]byte{1, 2, 3, 4, 0, 0, 0, 0})
	require.NoError(t, err)
	r.Copy(4, 0, 4)
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Bytes(4, 4))
}

func TestDataPtr(t *testing.T) {
	buf := make([]byte, 16)
	r, err := New(buf)
	require.NoError(t, err)

	s := r.Bytes(4, 8)
	assert.Equal(t, r.Ptr(4), DataPtr(s))
	assert.Equal(t, uint32(4), r.Off(DataPtr(s)))
}
