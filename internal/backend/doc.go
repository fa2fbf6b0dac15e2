// Package backend описывает внешних соисполнителей пайплайна как
// непрозрачные возможности: загрузку изображения, AI-трансформацию и
// сохранение в объектное хранилище.
//
// Контракты зафиксированы интерфейсами Fetcher/Transformer/Store;
// конкретные реализации в этом пакете — тонкие HTTP-клиенты. Сам бэкенд
// трансформации и хранилища вне зоны ответственности этого репозитория
// (spec §1/§6) — здесь описан только контракт ошибок/таймингов, которым
// они обязаны следовать.
package backend
