/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"container/list"

	"github.com/google/tablesync/datasources"
)

// DefaultCacheEntries bounds the placeholder cache when Options leaves it unset
const DefaultCacheEntries = 32

// pageCache is a small LRU of committed pages keyed by request key.
// Cached pages are shown as placeholders while their key is refetched.
type pageCache struct {
	capacity int
	ll       *list.List
	items    map[datasources.Key]*list.Element
}

type cacheEntry struct {
	key  datasources.Key
	page datasources.Page
}

func newPageCache(capacity int) *pageCache {
	if capacity < 1 {
		capacity = DefaultCacheEntries
	}
	return &pageCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[datasources.Key]*list.Element),
	}
}

func (c *pageCache) get(key datasources.Key) (datasources.Page, bool) {
	el, ok := c.items[key]
	if !ok {
		return datasources.Page{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).page, true
}

func (c *pageCache) put(key datasources.Key, page datasources.Page) {
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).page = page
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, page: page})
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *pageCache) len() int {
	return c.ll.Len()
}
