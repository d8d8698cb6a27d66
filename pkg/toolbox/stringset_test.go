package toolbox
//
//Copyright 2019 Telenor Digital AS
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//http://www.apache.org/licenses/LICENSE-2.0
//
//Unless required by applicable law or agreed to in writing, software
//distributed under the License is distributed on an "AS IS" BASIS,
//WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//See the License for the specific language governing permissions and
//limitations under the License.
//
import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringSetSync(t *testing.T) {
	assert := require.New(t)

	members := NewStringSet()
	steps := []struct {
		nodes   []string
		changed bool
		size    int
	}{
		{[]string{"node-a", "node-b", "node-c"}, true, 3},
		{[]string{"node-a", "node-b", "node-c"}, false, 3},
		{[]string{"node-c", "node-b", "node-a"}, false, 3},
		{[]string{"node-a", "node-b", "node-c", "node-d"}, true, 4},
		{[]string{"node-a", "node-x", "node-y", "node-z"}, true, 4},
		{[]string{}, true, 0},
	}
	for i, s := range steps {
		assert.Equal(s.changed, members.Sync(s.nodes...), "step %d", i)
		assert.Equal(s.size, members.Size(), "step %d", i)
	}

	members.Sync("node-b", "node-a", "node-c")
	assert.Equal([]string{"node-a", "node-b", "node-c"}, members.List())
	assert.True(members.Contains("node-b"))
	assert.False(members.Contains("node-x"))

	members.Clear()
	assert.Equal(0, members.Size())
	assert.Empty(members.List())
}

func TestStringSetAddRemove(t *testing.T) {
	assert := require.New(t)

	members := NewStringSet()
	assert.True(members.Add("node-a"))
	assert.True(members.Add("node-b"))
	assert.False(members.Add("node-a"), "already a member")
	assert.Equal(2, members.Size())

	assert.False(members.Remove("node-x"))
	assert.True(members.Remove("node-a"))
	assert.False(members.Remove("node-a"))
	assert.Equal([]string{"node-b"}, members.List())

	assert.True(members.Remove("node-b"))
	assert.Equal(0, members.Size())
}
